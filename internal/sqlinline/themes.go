package sqlinline

const QListActiveThemes = `--sql 32df1f14-baa2-4684-8616-ffbeea1d8049
select id::text, name, slug
from themes
where is_active = true
order by sort_order asc, created_at asc;
`

const QListAllThemes = `--sql 27572b64-d2a6-4526-ba5b-a7736a9ced64
select id::text, slug, name, prompt_template, is_active, access_tier, sort_order, created_at, updated_at
from themes
order by sort_order asc, created_at asc;
`

const QSelectActiveThemeByID = `--sql d30af452-4eed-4ff9-8238-b76d62b33a3b
select id::text, slug, name, prompt_template, is_active, access_tier, sort_order, created_at, updated_at
from themes
where id = $1::uuid and is_active = true
limit 1;
`

const QInsertTheme = `--sql 81e8329b-0c35-44ce-95e8-8c516f69d239
insert into themes (slug, name, prompt_template, is_active, access_tier, sort_order)
values ($1::text, $2::text, $3::text, $4::boolean, $5::text, $6::int)
returning id::text, slug, name, prompt_template, is_active, access_tier, sort_order, created_at, updated_at;
`

// QUpdateTheme treats null parameters as "leave unchanged".
const QUpdateTheme = `--sql 9bd4c991-d4b9-4803-82aa-c1339335ae07
update themes
set slug = coalesce($2::text, slug),
    name = coalesce($3::text, name),
    prompt_template = coalesce($4::text, prompt_template),
    is_active = coalesce($5::boolean, is_active),
    access_tier = coalesce($6::text, access_tier),
    sort_order = coalesce($7::int, sort_order)
where id = $1::uuid
returning id::text, slug, name, prompt_template, is_active, access_tier, sort_order, created_at, updated_at;
`

const QDeleteTheme = `--sql 90ccbc01-a498-4728-8aad-ab147a965fa8
delete from themes
where id = $1::uuid;
`

const QUpsertThemeBySlug = `--sql a1e13153-0a45-4608-bacc-7c1fcbe1ea86
insert into themes (slug, name, prompt_template, is_active, access_tier, sort_order)
values ($1::text, $2::text, $3::text, $4::boolean, $5::text, $6::int)
on conflict (slug) do update set
    name = excluded.name,
    prompt_template = excluded.prompt_template,
    is_active = excluded.is_active,
    access_tier = excluded.access_tier,
    sort_order = excluded.sort_order
returning (xmax = 0) as inserted;
`
